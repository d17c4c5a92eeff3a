package lifecycle

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceSuffixLen = 6

// NewTransactionRef builds "<PRODUCTCODE>-<epochMillis>-<6 base36 chars>"
func NewTransactionRef(productCode string, now time.Time, suffix string) string {
	return fmt.Sprintf("%s-%d-%s", strings.ToUpper(strings.TrimSpace(productCode)), now.UnixMilli(), suffix)
}

// randomSuffix draws six base36 characters from a random UUID
func randomSuffix() string {
	id := uuid.New()
	s := new(big.Int).SetBytes(id[:]).Text(36)
	if len(s) < referenceSuffixLen {
		s = strings.Repeat("0", referenceSuffixLen-len(s)) + s
	}
	return s[len(s)-referenceSuffixLen:]
}
