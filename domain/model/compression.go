package model

// CompressionType represents the compression codec of a file source.
type CompressionType int

const (
	// CompressionNone represents no compression
	CompressionNone CompressionType = iota
	// CompressionGZ represents gzip compression
	CompressionGZ
	// CompressionBZ2 represents bzip2 compression
	CompressionBZ2
	// CompressionXZ represents xz compression
	CompressionXZ
	// CompressionZSTD represents zstd compression
	CompressionZSTD
)

// String returns the codec name.
func (c CompressionType) String() string {
	switch c {
	case CompressionGZ:
		return "GZIP"
	case CompressionBZ2:
		return "BZIP2"
	case CompressionXZ:
		return "XZ"
	case CompressionZSTD:
		return "ZSTD"
	default:
		return "UNCOMPRESSED"
	}
}

// Extension returns the file extension for the codec, e.g. ".gz".
func (c CompressionType) Extension() string {
	switch c {
	case CompressionGZ:
		return ".gz"
	case CompressionBZ2:
		return ".bz2"
	case CompressionXZ:
		return ".xz"
	case CompressionZSTD:
		return ".zst"
	default:
		return ""
	}
}

// compressionTokens maps a filename suffix to its codec.
var compressionTokens = map[string]CompressionType{
	"gz":   CompressionGZ,
	"bz2":  CompressionBZ2,
	"xz":   CompressionXZ,
	"zst":  CompressionZSTD,
	"zstd": CompressionZSTD,
}
