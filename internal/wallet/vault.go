package wallet

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Klingon-tech/klingnet-paycode/internal/log"
	"github.com/Klingon-tech/klingnet-paycode/pkg/crypto"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealed seed layout:
//
//	magic(4) | salt(32) | memory(4) | iterations(4) | parallelism(1) | nonce(24) | ciphertext
//
// Everything before the nonce is authenticated as additional data, so the
// KDF parameters cannot be swapped without failing the open.
const (
	SaltSize = 32

	sealMagic  = "PCS1"
	headerSize = len(sealMagic) + SaltSize + 4 + 4 + 1
)

var (
	// ErrWrongPassword is returned when a sealed seed fails authentication.
	ErrWrongPassword = errors.New("wrong password or corrupted seed")
	// ErrVaultExists is returned when creating over an existing vault.
	ErrVaultExists = errors.New("seed vault already exists")
	// ErrNoVault is returned when opening a vault that was never created.
	ErrNoVault = errors.New("seed vault not found")
)

// KDFParams holds Argon2id parameters.
type KDFParams struct {
	Memory      uint32 // in KiB
	Iterations  uint32
	Parallelism uint8
}

// DefaultKDFParams returns the Argon2id parameters used for new vaults.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Memory:      64 * 1024, // 64 MB
		Iterations:  3,
		Parallelism: 4,
	}
}

func (p KDFParams) key(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, p.Iterations, p.Memory, p.Parallelism, chacha20poly1305.KeySize)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// SealSeed encrypts seed under password with Argon2id and
// XChaCha20-Poly1305.
func SealSeed(seed, password []byte, params KDFParams) ([]byte, error) {
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("invalid kdf params %+v", params)
	}

	header := make([]byte, 0, headerSize)
	header = append(header, sealMagic...)
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	header = append(header, salt...)
	header = binary.LittleEndian.AppendUint32(header, params.Memory)
	header = binary.LittleEndian.AppendUint32(header, params.Iterations)
	header = append(header, params.Parallelism)

	key := params.key(password, salt)
	defer zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := append(header, nonce...)
	return aead.Seal(out, nonce, seed, header), nil
}

// OpenSeed decrypts a seed sealed by SealSeed.
func OpenSeed(sealed, password []byte) ([]byte, error) {
	nonceSize := chacha20poly1305.NonceSizeX
	if minSize := headerSize + nonceSize + chacha20poly1305.Overhead; len(sealed) < minSize {
		return nil, fmt.Errorf("sealed seed too short: %d bytes, need at least %d", len(sealed), minSize)
	}
	if !bytes.HasPrefix(sealed, []byte(sealMagic)) {
		return nil, fmt.Errorf("sealed seed has unknown format")
	}

	header := sealed[:headerSize]
	rest := header[len(sealMagic):]
	salt := rest[:SaltSize]
	params := KDFParams{
		Memory:      binary.LittleEndian.Uint32(rest[SaltSize:]),
		Iterations:  binary.LittleEndian.Uint32(rest[SaltSize+4:]),
		Parallelism: rest[SaltSize+8],
	}
	if params.Memory == 0 || params.Iterations == 0 || params.Parallelism == 0 {
		return nil, fmt.Errorf("sealed seed has invalid kdf params")
	}
	nonce := sealed[headerSize : headerSize+nonceSize]
	ciphertext := sealed[headerSize+nonceSize:]

	key := params.key(password, salt)
	defer zero(key)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	seed, err := aead.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return seed, nil
}

// Fingerprint returns the BIP-32 fingerprint of the master key of seed:
// the first four bytes of HASH160 of its public key, in hex.
func Fingerprint(seed []byte) (string, error) {
	master, err := NewMasterKey(seed)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(crypto.Hash160(master.PublicKeyBytes())[:4]), nil
}

// vaultFile is the on-disk JSON format of a seed vault.
type vaultFile struct {
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Fingerprint string    `json:"fingerprint"`
	SealedSeed  []byte    `json:"sealed_seed"`
}

// Vault keeps one password-protected wallet seed in a file.
type Vault struct {
	path string
}

// NewVault returns a vault stored at path. Nothing is read until Open.
func NewVault(path string) *Vault {
	return &Vault{path: path}
}

// Exists reports whether the vault file is present.
func (v *Vault) Exists() bool {
	_, err := os.Stat(v.path)
	return err == nil
}

// Create seals seed into a new vault file readable only by the owner.
func (v *Vault) Create(seed, password []byte, params KDFParams) error {
	if v.Exists() {
		return fmt.Errorf("%w: %s", ErrVaultExists, v.path)
	}
	fp, err := Fingerprint(seed)
	if err != nil {
		return err
	}
	sealed, err := SealSeed(seed, password, params)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(vaultFile{
		Version:     1,
		CreatedAt:   time.Now().UTC(),
		Fingerprint: fp,
		SealedSeed:  sealed,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal vault: %w", err)
	}
	// O_EXCL keeps a concurrent create from being overwritten.
	f, err := os.OpenFile(v.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create vault: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write vault: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Wallet.Info().Str("path", v.path).Str("fingerprint", fp).Msg("Seed vault created")
	return nil
}

// Open decrypts the vault and checks the seed against the stored fingerprint.
func (v *Vault) Open(password []byte) ([]byte, error) {
	vf, err := v.read()
	if err != nil {
		return nil, err
	}
	seed, err := OpenSeed(vf.SealedSeed, password)
	if err != nil {
		log.Wallet.Debug().Str("path", v.path).Err(err).Msg("Vault unlock failed")
		return nil, err
	}
	fp, err := Fingerprint(seed)
	if err != nil {
		return nil, err
	}
	if fp != vf.Fingerprint {
		zero(seed)
		return nil, fmt.Errorf("vault fingerprint mismatch: stored %s, seed %s", vf.Fingerprint, fp)
	}
	return seed, nil
}

// Fingerprint returns the stored master key fingerprint without decrypting.
func (v *Vault) Fingerprint() (string, error) {
	vf, err := v.read()
	if err != nil {
		return "", err
	}
	return vf.Fingerprint, nil
}

func (v *Vault) read() (*vaultFile, error) {
	data, err := os.ReadFile(v.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoVault, v.path)
		}
		return nil, fmt.Errorf("read vault: %w", err)
	}
	var vf vaultFile
	if err := json.Unmarshal(data, &vf); err != nil {
		return nil, fmt.Errorf("parse vault: %w", err)
	}
	if vf.Version != 1 {
		return nil, fmt.Errorf("unsupported vault version: %d", vf.Version)
	}
	return &vf, nil
}
