package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// GenerateVisitID returns a prefixed, sortable visit identifier.
func GenerateVisitID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("vis_%d_%06d", timestamp, randomNum.Int64())
}

// GenerateUUID creates a random UUID v4 string.
func GenerateUUID() string {
	return uuid.NewString()
}
