package codec

import (
	"go.temporal.io/sdk/converter"
	"google.golang.org/grpc"
)

// NewClientInterceptor returns a gRPC interceptor that encodes outgoing and
// decodes incoming payloads of Temporal API calls with codec. It is meant for
// clients that talk to a proxy or frontend rather than using a data converter.
func NewClientInterceptor(codec *Codec) (grpc.UnaryClientInterceptor, error) {
	return converter.NewPayloadCodecGRPCClientInterceptor(
		converter.PayloadCodecGRPCClientInterceptorOptions{
			Codecs: []converter.PayloadCodec{codec},
		},
	)
}

// NewDataConverter wraps the SDK default data converter with codec
func NewDataConverter(codec *Codec) converter.DataConverter {
	return converter.NewCodecDataConverter(converter.GetDefaultDataConverter(), codec)
}
