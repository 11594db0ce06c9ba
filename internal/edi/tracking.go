package edi

import (
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Vladdy-1988/medlink-claims-hub-sub001/internal/domain"
)

var (
	trackingMu  sync.Mutex
	trackingRng = rand.New(rand.NewSource(time.Now().UnixNano()))
)

const suffixAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// NewTrackingNumber builds a tracking number of the form
// {PREFIX}-{TYPE}-{base36 timestamp}-{random suffix}. In sandbox mode the
// prefix is the configured sandbox marker; production numbers carry the plain
// routing prefix instead.
func NewTrackingNumber(prefix string, claimType domain.ClaimType, now time.Time) string {
	typeTag := "CLM"
	if claimType == domain.ClaimTypePreauth {
		typeTag = "PA"
	}

	ts := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))

	trackingMu.Lock()
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = suffixAlphabet[trackingRng.Intn(len(suffixAlphabet))]
	}
	trackingMu.Unlock()

	return prefix + "-" + typeTag + "-" + ts + "-" + string(suffix)
}

// TrackingTimestamp recovers the issue time embedded in a tracking number.
// Returns false for ids this pipeline did not generate.
func TrackingTimestamp(trackingNumber string) (time.Time, bool) {
	parts := strings.Split(trackingNumber, "-")
	if len(parts) != 4 {
		return time.Time{}, false
	}
	ms, err := strconv.ParseInt(strings.ToLower(parts[2]), 36, 64)
	if err != nil || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
