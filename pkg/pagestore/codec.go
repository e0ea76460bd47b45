package pagestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/crypto/pbkdf2"
)

// CompressionAlgorithm selects the codec applied to a page's bytes
// before they are written to disk. Naming follows
// pkg/compression/compression.go in the teacher repo, narrowed to the
// one algorithm a page cache actually needs for hot-path compression.
type CompressionAlgorithm uint8

const (
	CompressionNone CompressionAlgorithm = iota
	CompressionZstd
)

// EncryptionAlgorithm selects the at-rest encryption applied after
// compression. Naming and GCM framing follow
// pkg/encryption/encryption.go in the teacher repo.
type EncryptionAlgorithm uint8

const (
	EncryptionNone EncryptionAlgorithm = iota
	EncryptionAES256GCM
)

// CodecConfig configures the optional write-back codec. Both stages
// default to off, which keeps the disk image byte-identical to the
// frame image and satisfies the round-trip laws in spec.md section 8
// without qualification.
type CodecConfig struct {
	Compression CompressionAlgorithm
	Encryption  EncryptionAlgorithm
	Passphrase  string // required when Encryption != EncryptionNone
}

// DefaultCodecConfig returns a no-op codec configuration.
func DefaultCodecConfig() CodecConfig {
	return CodecConfig{Compression: CompressionNone, Encryption: EncryptionNone}
}

// pbkdf2Salt is fixed rather than random-per-page: the codec derives
// one key for the lifetime of a DiskManager, not one key per record,
// so a stored salt alongside the encrypted bytes is unnecessary.
var pbkdf2Salt = []byte("pagecache-disk-codec-salt-v1")

// codec applies the configured compression and encryption stages, in
// that order, to bytes about to be written to disk, and reverses them
// on read. It is stateless aside from the derived AES key and the
// shared zstd encoder/decoder, both safe for concurrent use.
type codec struct {
	cfg     CodecConfig
	zstdEnc *zstd.Encoder
	zstdDec *zstd.Decoder
	block   cipher.Block
}

func newCodec(cfg CodecConfig) (*codec, error) {
	c := &codec{cfg: cfg}

	if cfg.Compression == CompressionZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("pagestore: create zstd encoder: %w", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("pagestore: create zstd decoder: %w", err)
		}
		c.zstdEnc = enc
		c.zstdDec = dec
	}

	if cfg.Encryption == EncryptionAES256GCM {
		if cfg.Passphrase == "" {
			return nil, fmt.Errorf("pagestore: encryption enabled without a passphrase")
		}
		key := pbkdf2.Key([]byte(cfg.Passphrase), pbkdf2Salt, 100_000, 32, sha256.New)
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("pagestore: create AES cipher: %w", err)
		}
		c.block = block
	}

	return c, nil
}

// encode compresses then encrypts a page's plaintext bytes.
func (c *codec) encode(plain []byte) ([]byte, error) {
	out := plain
	if c.cfg.Compression == CompressionZstd {
		out = c.zstdEnc.EncodeAll(out, nil)
	}
	if c.cfg.Encryption == EncryptionAES256GCM {
		gcm, err := cipher.NewGCM(c.block)
		if err != nil {
			return nil, fmt.Errorf("pagestore: create GCM: %w", err)
		}
		nonce := make([]byte, gcm.NonceSize())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("pagestore: generate nonce: %w", err)
		}
		out = gcm.Seal(nonce, nonce, out, nil)
	}
	return out, nil
}

// decode reverses encode: decrypt then decompress.
func (c *codec) decode(stored []byte) ([]byte, error) {
	out := stored
	if c.cfg.Encryption == EncryptionAES256GCM {
		gcm, err := cipher.NewGCM(c.block)
		if err != nil {
			return nil, fmt.Errorf("pagestore: create GCM: %w", err)
		}
		nonceSize := gcm.NonceSize()
		if len(out) < nonceSize {
			return nil, fmt.Errorf("pagestore: stored page shorter than nonce")
		}
		nonce, ciphertext := out[:nonceSize], out[nonceSize:]
		plain, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("pagestore: GCM decrypt: %w", err)
		}
		out = plain
	}
	if c.cfg.Compression == CompressionZstd {
		plain, err := c.zstdDec.DecodeAll(out, nil)
		if err != nil {
			return nil, fmt.Errorf("pagestore: zstd decode: %w", err)
		}
		out = plain
	}
	return out, nil
}
