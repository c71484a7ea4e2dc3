package compresscache

import (
	"github.com/golang/snappy"
)

func snappyCompress(data []byte) ([]byte, error) {
	return snappy.Encode(nil, data), nil
}

func snappyDecompress(data []byte) ([]byte, error) {
	return snappy.Decode(nil, data)
}
