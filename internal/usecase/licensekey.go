package usecase

import (
	"crypto/rand"
	"math/big"
	"regexp"
	"strings"
)

// Формат ключа — внешний контракт: SF- и три группы по 4 символа.
const licenseKeyAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var licenseKeyPattern = regexp.MustCompile(`^SF-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func GenerateLicenseKey() string {
	var b strings.Builder
	b.WriteString("SF")
	for group := 0; group < 3; group++ {
		b.WriteByte('-')
		for i := 0; i < 4; i++ {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(licenseKeyAlphabet))))
			if err != nil {
				// crypto/rand на поддерживаемых платформах не падает
				panic(err)
			}
			b.WriteByte(licenseKeyAlphabet[n.Int64()])
		}
	}
	return b.String()
}

func ValidLicenseKey(key string) bool {
	return licenseKeyPattern.MatchString(key)
}
