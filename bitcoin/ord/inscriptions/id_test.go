// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions_test

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"

	"github.com/BoostyLabs/ordinals/bitcoin/ord/inscriptions"
)

func TestID(t *testing.T) {
	t.Run("NewIDFromString", func(t *testing.T) {
		tests := []struct {
			value   string
			invalid bool
		}{
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79dai0", false},
			{"521f8eccffa4c41a3a7728ddi12ea5a4a02feed81f41159231251ecf1e5c79dai0", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f411251ecf1e5c79dai0", true},
			{"521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da", true},
		}
		for _, test := range tests {
			_, err := inscriptions.NewIDFromString(test.value)
			if test.invalid {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		}
	})

	t.Run("string round trip", func(t *testing.T) {
		id, err := inscriptions.NewIDFromString("521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79dai7")
		require.NoError(t, err)
		require.EqualValues(t, 7, id.Index)
		require.EqualValues(t, "521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79dai7", id.String())
	})

	t.Run("data push round trip", func(t *testing.T) {
		txBytes, err := hex.DecodeString("521f8eccffa4c41a3a7728dd012ea5a4a02feed81f41159231251ecf1e5c79da")
		require.NoError(t, err)
		txID, err := chainhash.NewHash(txBytes)
		require.NoError(t, err)

		for _, index := range []uint32{0, 1, 255, 256, 1 << 24} {
			id := inscriptions.NewID(txID, index)
			parsed, err := inscriptions.NewIDFromDataPush(id.IntoDataPush())
			require.NoError(t, err)
			require.EqualValues(t, index, parsed.Index)
			require.EqualValues(t, txID, parsed.TxID)
		}

		_, err = inscriptions.NewIDFromDataPush(txBytes[:16])
		require.Error(t, err)
	})
}
