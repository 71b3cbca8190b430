package metrics

const (
	DefaultPrometheusPath = "/metrics"

	MeterName = "temporal-sa/rsa-oaep-codec"

	CodecPrefix = "rsa_oaep_codec_"

	// Encryption metrics
	EncryptLatency  = CodecPrefix + "encrypt_latency"
	EncryptRequests = CodecPrefix + "encrypt_requests"
	EncryptErrors   = CodecPrefix + "encrypt_errors"
	EncryptSuccess  = CodecPrefix + "encrypt_success"

	// Decryption metrics
	DecryptLatency  = CodecPrefix + "decrypt_latency"
	DecryptRequests = CodecPrefix + "decrypt_requests"
	DecryptErrors   = CodecPrefix + "decrypt_errors"
	DecryptSuccess  = CodecPrefix + "decrypt_success"

	// Payload codec encode metrics
	PayloadEncodeLatency  = CodecPrefix + "payload_encode_latency"
	PayloadEncodeRequests = CodecPrefix + "payload_encode_requests"
	PayloadEncodeErrors   = CodecPrefix + "payload_encode_errors"
	PayloadEncodeSuccess  = CodecPrefix + "payload_encode_success"

	// Payload codec decode metrics
	PayloadDecodeLatency  = CodecPrefix + "payload_decode_latency"
	PayloadDecodeRequests = CodecPrefix + "payload_decode_requests"
	PayloadDecodeErrors   = CodecPrefix + "payload_decode_errors"
	PayloadDecodeSuccess  = CodecPrefix + "payload_decode_success"

	// Attribute keys
	EncryptionKeyAttribute = "encryption_key"
	KeySourceAttribute     = "key_source"
)
