//go:build !nojsonsimd

// Package jsonx selects the JSON codec used on the pool wire.
package jsonx

import "github.com/bytedance/sonic"

var fastJSON = sonic.ConfigDefault

// Marshal encodes v using the sonic codec
func Marshal(v interface{}) ([]byte, error) {
	return fastJSON.Marshal(v)
}

// Unmarshal decodes data into v using the sonic codec
func Unmarshal(data []byte, v interface{}) error {
	return fastJSON.Unmarshal(data, v)
}
