package zapscan

import (
	"fmt"
	"strconv"
	"strings"
)

// msatPerBTC is the number of millisatoshis in one bitcoin.
const msatPerBTC = 100_000_000_000

// DecodeAmountSats extracts the payment amount, in satoshis, from a BOLT11
// payment-request string. Only the human-readable amount part is inspected;
// the signed data section is irrelevant for filtering. Invoices without an
// amount, or with one this decoder cannot represent in whole satoshis,
// return an error.
func DecodeAmountSats(invoice string) (int64, error) {
	s := strings.ToLower(strings.TrimSpace(invoice))
	if !strings.HasPrefix(s, "ln") {
		return 0, fmt.Errorf("zapscan: not a payment request: %q", truncate(invoice))
	}
	sep := strings.LastIndex(s, "1")
	if sep < 0 {
		return 0, fmt.Errorf("zapscan: malformed payment request: %q", truncate(invoice))
	}
	hrp := s[:sep]

	// Skip "ln" and the network prefix letters; the amount starts at the
	// first digit.
	i := 2
	for i < len(hrp) && (hrp[i] < '0' || hrp[i] > '9') {
		i++
	}
	if i == len(hrp) {
		return 0, fmt.Errorf("zapscan: payment request carries no amount")
	}

	// Digits, then an optional multiplier suffix.
	j := i
	for j < len(hrp) && hrp[j] >= '0' && hrp[j] <= '9' {
		j++
	}
	num, err := strconv.ParseInt(hrp[i:j], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("zapscan: parse amount: %w", err)
	}
	multiplier := hrp[j:]
	if len(multiplier) > 1 {
		return 0, fmt.Errorf("zapscan: malformed amount suffix %q", multiplier)
	}

	var msat int64
	switch multiplier {
	case "":
		msat = num * msatPerBTC
	case "m":
		msat = num * (msatPerBTC / 1_000)
	case "u":
		msat = num * (msatPerBTC / 1_000_000)
	case "n":
		msat = num * (msatPerBTC / 1_000_000_000)
	case "p":
		if num%10 != 0 {
			return 0, fmt.Errorf("zapscan: sub-millisatoshi amount")
		}
		msat = num / 10
	default:
		return 0, fmt.Errorf("zapscan: unknown amount multiplier %q", multiplier)
	}
	return msat / 1000, nil
}

func truncate(s string) string {
	if len(s) > 24 {
		return s[:24] + "…"
	}
	return s
}
