package test

import "math/rand/v2"

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomASCIIString returns a pseudo-random ASCII string whose length falls
// within the provided bounds. Equal bounds produce exactly that length.
func RandomASCIIString(minLen, maxLen int) string {
	if minLen <= 0 {
		minLen = 1
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	length := minLen
	if maxLen > minLen {
		length += rand.IntN(maxLen - minLen + 1)
	}
	buf := make([]byte, length)
	for i := range buf {
		buf[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(buf)
}

// RandomMSISDN returns a subscriber number in the 254XXXXXXXXX format the
// payment provider accepts.
func RandomMSISDN() string {
	buf := []byte("254")
	for i := 0; i < 9; i++ {
		buf = append(buf, byte('0'+rand.IntN(10)))
	}
	return string(buf)
}
