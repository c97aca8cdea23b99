package id

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// JoinCodeAlphabet leaves out characters that are easy to misread aloud
// (0/O, 1/I).
const JoinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const JoinCodeLength = 6

// Generator creates opaque IDs for players, submissions and games.
type Generator interface {
	NewID() (string, error)
	NewJoinCode() (string, error)
}

type UUIDGenerator struct{}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) NewID() (string, error) {
	v, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return v.String(), nil
}

func (g *UUIDGenerator) NewJoinCode() (string, error) {
	buf := make([]byte, JoinCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes for join code: %w", err)
	}

	out := make([]byte, JoinCodeLength)
	for i, b := range buf {
		out[i] = JoinCodeAlphabet[int(b)%len(JoinCodeAlphabet)]
	}
	return string(out), nil
}
