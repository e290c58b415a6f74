package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"
)

// EncodeCompaniesToParquet serializes one batch into a single parquet file
// ready for upload.
func EncodeCompaniesToParquet(companies []Company) ([]byte, error) {
	if len(companies) == 0 {
		return nil, fmt.Errorf("companies are required")
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[Company](buf)
	if _, err := writer.Write(companies); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeCompaniesFromParquet reads a batch back; used to verify uploads.
func DecodeCompaniesFromParquet(data []byte) ([]Company, error) {
	reader := parquet.NewGenericReader[Company](bytes.NewReader(data))
	defer func() { _ = reader.Close() }()

	companies := make([]Company, 0, reader.NumRows())
	batch := make([]Company, 256)
	for {
		n, err := reader.Read(batch)
		companies = append(companies, batch[:n]...)
		if errors.Is(err, io.EOF) {
			return companies, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
	}
}
