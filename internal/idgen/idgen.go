// Package idgen generates and validates the short, prefixed IDs used for
// reviews, threads, and comments.
//
// The base36 encoding is adapted from bd's internal/idgen/hash.go: that
// generator hashes issue content (title/description/creator/timestamp)
// to get a stable, collision-resistant ID. Here the ID is not meant to be
// content-addressed, so the same base36 encoding is fed random bytes
// from crypto/rand instead of a content digest.
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const base36Alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// defaultHashLen is the number of base36 characters in the random suffix.
// 6 chars (above the minimum of 3) gives ~31 bits of entropy (36^6);
// reviews/threads/comments all use this width.
const defaultHashLen = 6

// reviewPrefix, threadPrefix, commentPrefix are the three ID kinds.
const (
	ReviewPrefix  = "cr"
	ThreadPrefix  = "th"
	CommentPrefix = "c"
)

// encodeBase36 converts data to a base36 string, left-padded/truncated
// to exactly length characters (keeping the least-significant digits on
// truncation), matching bd's EncodeBase36.
func encodeBase36(data []byte, length int) string {
	num := new(big.Int).SetBytes(data)
	base := big.NewInt(36)
	zero := big.NewInt(0)
	mod := new(big.Int)

	chars := make([]byte, 0, length)
	for num.Cmp(zero) > 0 {
		num.DivMod(num, base, mod)
		chars = append(chars, base36Alphabet[mod.Int64()])
	}
	for i, j := 0, len(chars)-1; i < j; i, j = i+1, j-1 {
		chars[i], chars[j] = chars[j], chars[i]
	}

	str := string(chars)
	if len(str) < length {
		str = strings.Repeat("0", length-len(str)) + str
	}
	if len(str) > length {
		str = str[len(str)-length:]
	}
	return str
}

// New generates a new <prefix>-<hash> ID with a CSPRNG-seeded base36
// suffix of at least 3 characters.
func New(prefix string) (string, error) {
	buf := make([]byte, 8) // 64 bits, plenty for a 6-char base36 suffix
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("idgen: generate random suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s", prefix, encodeBase36(buf, defaultHashLen)), nil
}

// Comment builds a comment ID of the form <thread_id>.<n>.
func Comment(threadID string, n int) string {
	return fmt.Sprintf("%s.%d", threadID, n)
}

func isKindID(s, prefix string) bool {
	rest, ok := strings.CutPrefix(s, prefix+"-")
	return ok && len(rest) >= 3
}

// IsReviewID reports whether s looks like a review ID.
func IsReviewID(s string) bool { return isKindID(s, ReviewPrefix) }

// IsThreadID reports whether s looks like a thread ID.
func IsThreadID(s string) bool { return isKindID(s, ThreadPrefix) }

// IsCommentID reports whether s looks like a comment ID (<thread_id>.<n>).
func IsCommentID(s string) bool {
	idx := strings.LastIndex(s, ".")
	if idx <= 0 || idx == len(s)-1 {
		return false
	}
	threadPart, numPart := s[:idx], s[idx+1:]
	if !IsThreadID(threadPart) {
		return false
	}
	for _, r := range numPart {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
