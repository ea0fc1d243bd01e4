package pricing_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-configurator/internal/pricing"
)

func TestFormat(t *testing.T) {
	got, err := pricing.Format(d("1234.5"), "USD", "en-US")
	require.NoError(t, err)
	require.Equal(t, "$1,234.50", got)

	got, err = pricing.Format(d("335.6775"), "USD", "en-US")
	require.NoError(t, err)
	require.Equal(t, "$335.68", got)

	got, err = pricing.Format(d("-5"), "USD", "en-US")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "-"))

	_, err = pricing.Format(d("1"), "ZZZ", "en-US")
	require.Error(t, err)
}

func TestFormatDoesNotAlterAmount(t *testing.T) {
	amount := d("21.6775")
	_, err := pricing.Format(amount, "USD", "en-US")
	require.NoError(t, err)
	requireMoney(t, "21.6775", amount)
}
