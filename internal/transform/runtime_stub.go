//go:build !govips || !cgo

package transform

// Startup readies the codec before the first Process call. The stdlib codec
// needs no process-wide initialization.
func Startup() error {
	return nil
}

func Shutdown() {}

func newCodec() Codec {
	return stdCodec{}
}
