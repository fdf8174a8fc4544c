package checkout

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NumberGenerator produces candidate order numbers.
type NumberGenerator func(now time.Time) (string, error)

// NewNumberGenerator returns PREFIX-YYYYMMDD-XXXXXX numbers with a random
// suffix drawn from an alphabet without look-alike characters.
func NewNumberGenerator(prefix string) NumberGenerator {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "SS"
	}
	return func(now time.Time) (string, error) {
		suffix := make([]byte, 6)
		limit := big.NewInt(int64(len(orderNumberAlphabet)))
		for i := range suffix {
			n, err := rand.Int(rand.Reader, limit)
			if err != nil {
				return "", fmt.Errorf("order number entropy: %w", err)
			}
			suffix[i] = orderNumberAlphabet[n.Int64()]
		}
		return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix), nil
	}
}
