// Package encoder provides event encoding to archive file formats.
//
// Encoders turn a batch of log events into a file suitable for object storage
// and analytics, with configurable compression.
//
// # Supported Formats
//
//   - Parquet: Columnar format optimized for analytics and Athena queries
//   - Avro: Row-based OCF format with embedded schema
//   - JSONL: One JSON document per line
//
// # Encoder Factory
//
// Use Factory to create encoder instances:
//
//	factory := encoder.NewFactory(event.FormatParquet, "snappy")
//	enc, err := factory.CreateEncoder()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	stats, err := enc.Encode(filePath, events)
//
// # Schema
//
// Every format stores the same columns: id, level, timestamp, message, the
// optional source, structured fields serialized as a JSON string, and the
// ingestion time.
//
// # File Extensions
//
//	parquetEnc.FileExtension()  // ".parquet"
//	avroEnc.FileExtension()     // ".avro.gz" (with gzip)
//	jsonlEnc.FileExtension()    // ".jsonl.gz" (with gzip)
//
// # Thread Safety
//
// Encoder instances are safe for concurrent use. Factory.CreateEncoder()
// creates independent encoder instances.
package encoder
