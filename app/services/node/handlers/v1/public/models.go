package public

import (
	"github.com/zuxlabs/ammledger/foundation/blockchain/database"
	"github.com/zuxlabs/ammledger/foundation/blockchain/identity"
)

type tx struct {
	ID        string            `json:"id"`
	From      identity.Address  `json:"from"`
	To        identity.Address  `json:"to"`
	Currency  database.Currency `json:"currency"`
	Amount    float64           `json:"amount"`
	TimeStamp uint64            `json:"timestamp"`
	Sig       string            `json:"sig"`
}

type block struct {
	database.BlockInfo
	Trans []tx `json:"trans"`
}

func toBlock(blk database.Block) block {
	trans := make([]tx, len(blk.Trans))
	for i, tran := range blk.Trans {
		trans[i] = tx{
			ID:        tran.ID(),
			From:      tran.From,
			To:        tran.To,
			Currency:  tran.Currency,
			Amount:    tran.Amount,
			TimeStamp: tran.TimeStamp,
			Sig:       tran.Signature.String(),
		}
	}

	return block{
		BlockInfo: blk.Info(),
		Trans:     trans,
	}
}

type verification struct {
	Valid  bool   `json:"valid"`
	Height uint64 `json:"height"`
	Tip    string `json:"tip"`
	Error  string `json:"error,omitempty"`
}
