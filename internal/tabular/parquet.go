package tabular

import (
	"bytes"

	"github.com/parquet-go/parquet-go"
	"github.com/rotisserie/eris"
)

// MarshalParquet encodes rows as a snappy-compressed parquet file.
func MarshalParquet[T any](rows []T) ([]byte, error) {
	var buf bytes.Buffer
	if err := parquet.Write[T](&buf, rows, parquet.Compression(&parquet.Snappy)); err != nil {
		return nil, eris.Wrap(err, "parquet: write")
	}
	return buf.Bytes(), nil
}

// UnmarshalParquet decodes all rows of a parquet file.
func UnmarshalParquet[T any](data []byte) ([]T, error) {
	rows, err := parquet.Read[T](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, eris.Wrap(err, "parquet: read")
	}
	return rows, nil
}
