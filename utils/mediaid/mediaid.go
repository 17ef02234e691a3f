package mediaid

import (
	"crypto/rand"
	"encoding/hex"
	mathrand "math/rand"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	mediaPrefix  = "med_"
	uploadPrefix = "image-"
)

var (
	entropyOnce sync.Once
	entropyMu   sync.Mutex
	entropy     *ulid.MonotonicEntropy

	lastUploadMillis atomic.Int64

	uploadIDPattern = regexp.MustCompile(`^image-[0-9]+-[0-9a-f]{8}$`)
)

func newULID() ulid.ULID {
	entropyOnce.Do(func() {
		source := mathrand.NewSource(time.Now().UnixNano())
		entropy = ulid.Monotonic(mathrand.New(source), 0)
	})
	// MonotonicEntropy is not safe for concurrent use.
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}

// New returns a med_* ULID string used as the media record identity.
func New() string {
	return mediaPrefix + strings.ToLower(newULID().String())
}

// IsValid reports whether the string is a med_* ULID.
func IsValid(value string) bool {
	if !strings.HasPrefix(value, mediaPrefix) {
		return false
	}
	_, err := Parse(value)
	return err == nil
}

// Parse strips the med_ prefix and returns the ULID.
func Parse(value string) (ulid.ULID, error) {
	value = strings.TrimSpace(value)
	value = strings.TrimPrefix(value, mediaPrefix)
	value = strings.TrimPrefix(value, "MED_")
	return ulid.Parse(value)
}

// NewLogicalAssetID returns the key prefix shared by every rendition of one asset.
func NewLogicalAssetID() string {
	return strings.ToLower(newULID().String())
}

// IsLogicalAssetID reports whether value looks like an identifier produced by NewLogicalAssetID.
func IsLogicalAssetID(value string) bool {
	if value != strings.ToLower(value) {
		return false
	}
	_, err := ulid.ParseStrict(strings.ToUpper(value))
	return err == nil
}

// NewUploadID returns image-<unix millis>-<8 hex>. The timestamp part never
// goes backwards within one process, even when the wall clock does.
func NewUploadID() string {
	millis := nextUploadMillis(time.Now().UnixMilli())
	var suffix [4]byte
	if _, err := rand.Read(suffix[:]); err != nil {
		// crypto/rand never fails on supported platforms; keep the id shape regardless.
		mathrand.Read(suffix[:])
	}
	return uploadPrefix + strconv.FormatInt(millis, 10) + "-" + hex.EncodeToString(suffix[:])
}

func nextUploadMillis(now int64) int64 {
	for {
		last := lastUploadMillis.Load()
		next := now
		if next <= last {
			next = last + 1
		}
		if lastUploadMillis.CompareAndSwap(last, next) {
			return next
		}
	}
}

// IsValidUploadID reports whether value has the exact image-<digits>-<8 hex> shape.
func IsValidUploadID(value string) bool {
	return uploadIDPattern.MatchString(value)
}
