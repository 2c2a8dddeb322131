package rpc

import (
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strings"

	"totchain/core"
	"totchain/native/auction"
	"totchain/native/pool"
	"totchain/native/settlement"
)

type handlerFunc func(*Server, json.RawMessage) (interface{}, *rpcError)

type methodSpec struct {
	handler handlerFunc
	admin   bool
}

var methods = map[string]methodSpec{
	"tot_quoteTax":       {handler: handleQuoteTax},
	"tot_getHolderStats": {handler: handleGetHolderStats},
	"tot_getBalance":     {handler: handleGetBalance},
	"tot_getSupply":      {handler: handleGetSupply},
	"pool_status":        {handler: handlePoolStatus},
	"auction_get":        {handler: handleAuctionGet},
	"events_recent":      {handler: handleEventsRecent},

	"tot_transfer":             {handler: handleTransfer, admin: true},
	"tot_consume":              {handler: handleConsume, admin: true},
	"tot_platformTransfer":     {handler: handlePlatformTransfer, admin: true},
	"tax_updatePolicy":         {handler: handleUpdatePolicy, admin: true},
	"tax_addExempt":            {handler: handleAddExempt, admin: true},
	"tax_removeExempt":         {handler: handleRemoveExempt, admin: true},
	"holder_freeze":            {handler: handleFreeze, admin: true},
	"holder_unfreeze":          {handler: handleUnfreeze, admin: true},
	"system_setPaused":         {handler: handleSetPaused, admin: true},
	"system_emergencyWithdraw": {handler: handleEmergencyWithdraw, admin: true},
	"system_updateAuthority":   {handler: handleUpdateAuthority, admin: true},
	"system_setTreasury":       {handler: handleSetTreasury, admin: true},
	"system_initGenesis":       {handler: handleInitGenesis, admin: true},
	"pool_release":             {handler: handlePoolRelease, admin: true},
	"auction_create":           {handler: handleAuctionCreate, admin: true},
	"auction_seize":            {handler: handleAuctionSeize, admin: true},
}

// decodeParams accepts either a bare object or a one-element positional
// array, matching both common JSON-RPC client conventions.
func decodeParams(raw json.RawMessage, dst interface{}) *rpcError {
	if len(raw) == 0 {
		return &rpcError{Code: codeInvalidParams, Message: "missing params"}
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil || len(list) != 1 {
			return &rpcError{Code: codeInvalidParams, Message: "expected a single params object"}
		}
		raw = list[0]
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &rpcError{Code: codeInvalidParams, Message: "malformed params: " + err.Error()}
	}
	return nil
}

func parseAddr(s string) ([20]byte, *rpcError) {
	var addr [20]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil || len(raw) != len(addr) {
		return addr, &rpcError{Code: codeInvalidParams, Message: "invalid address: " + s}
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmount(s string) (*big.Int, *rpcError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, &rpcError{Code: codeInvalidParams, Message: "invalid amount: " + s}
	}
	return amount, nil
}

func poolKindFromName(name string) (pool.Kind, *rpcError) {
	for _, kind := range pool.Kinds() {
		if kind.String() == strings.TrimSpace(name) {
			return kind, nil
		}
	}
	return 0, &rpcError{Code: codeInvalidParams, Message: "unknown pool kind: " + name}
}

func formatAddr(addr [20]byte) string { return "0x" + hex.EncodeToString(addr[:]) }

type quoteTaxParams struct {
	Sender string `json:"sender"`
	Amount string `json:"amount"`
	IsBuy  bool   `json:"isBuy"`
	IsSell bool   `json:"isSell"`
}

type quoteTaxResult struct {
	BaseBps     uint32 `json:"baseBps"`
	DiscountBps uint32 `json:"discountBps"`
	PenaltyBps  uint32 `json:"penaltyBps"`
	FinalBps    uint32 `json:"finalBps"`
	TaxAmount   string `json:"taxAmount"`
	NetAmount   string `json:"netAmount"`
}

func handleQuoteTax(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params quoteTaxParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	sender, rpcErr := parseAddr(params.Sender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	calc, err := s.node.QuoteTax(sender, amount, params.IsBuy, params.IsSell)
	if err != nil {
		return nil, errCode(err)
	}
	return quoteTaxResult{
		BaseBps:     calc.BaseBps,
		DiscountBps: calc.DiscountBps,
		PenaltyBps:  calc.PenaltyBps,
		FinalBps:    calc.FinalBps,
		TaxAmount:   calc.TaxAmount.String(),
		NetAmount:   calc.NetAmount.String(),
	}, nil
}

type transferParams struct {
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Amount   string `json:"amount"`
	IsSell   bool   `json:"isSell"`
}

type transferResult struct {
	TaxAmount string `json:"taxAmount"`
	NetAmount string `json:"netAmount"`
	Burned    string `json:"burned"`
	FinalBps  uint32 `json:"finalBps"`
	Exempt    bool   `json:"exempt"`
	Timestamp int64  `json:"timestamp"`
}

func handleTransfer(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params transferParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	sender, rpcErr := parseAddr(params.Sender)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receiver, rpcErr := parseAddr(params.Receiver)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.node.Transfer(sender, receiver, amount, params.IsSell)
	if err != nil {
		return nil, errCode(err)
	}
	return transferResult{
		TaxAmount: receipt.TaxAmount.String(),
		NetAmount: receipt.NetAmount.String(),
		Burned:    receipt.Burned.String(),
		FinalBps:  receipt.FinalBps,
		Exempt:    receipt.Exempt,
		Timestamp: receipt.Timestamp,
	}, nil
}

type consumeParams struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
	Kind   uint8  `json:"kind"`
}

func handleConsume(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params consumeParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddr(params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	kind, err := settlement.ConsumeKindFromByte(params.Kind)
	if err != nil {
		return nil, errCode(err)
	}
	if err := s.node.Consume(user, amount, kind); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

type platformTransferParams struct {
	User   string `json:"user"`
	Amount string `json:"amount"`
}

func handlePlatformTransfer(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params platformTransferParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	user, rpcErr := parseAddr(params.User)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.PlatformTransfer(s.authority, user, amount); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

type holderStatsResult struct {
	Address       string `json:"address"`
	HoldingDays   uint64 `json:"holdingDays"`
	DiscountBps   uint32 `json:"discountBps"`
	FirstHoldTime int64  `json:"firstHoldTime"`
	TotalBought   string `json:"totalBought"`
	TotalSold     string `json:"totalSold"`
	TotalTaxPaid  string `json:"totalTaxPaid"`
	TotalConsumed string `json:"totalConsumed"`
	Frozen        bool   `json:"frozen"`
	FreezeReason  uint8  `json:"freezeReason"`
}

func handleGetHolderStats(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	stats, err := s.node.GetHolderStats(addr)
	if err != nil {
		return nil, errCode(err)
	}
	return holderStatsResult{
		Address:       formatAddr(stats.Address),
		HoldingDays:   stats.HoldingDays,
		DiscountBps:   stats.DiscountBps,
		FirstHoldTime: stats.FirstHoldTime,
		TotalBought:   stats.TotalBought.String(),
		TotalSold:     stats.TotalSold.String(),
		TotalTaxPaid:  stats.TotalTaxPaid.String(),
		TotalConsumed: stats.TotalConsumed.String(),
		Frozen:        stats.Frozen,
		FreezeReason:  stats.FreezeReason,
	}, nil
}

func handleGetBalance(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	balance, err := s.node.GetBalance(addr)
	if err != nil {
		return nil, errCode(err)
	}
	return map[string]string{"balance": balance.String()}, nil
}

func handleGetSupply(s *Server, _ json.RawMessage) (interface{}, *rpcError) {
	info, err := s.node.GetSupply()
	if err != nil {
		return nil, errCode(err)
	}
	return map[string]string{
		"minted":       info.Minted.String(),
		"burned":       info.Burned.String(),
		"circulating":  info.Circulating.String(),
		"taxCollected": info.TaxCollected.String(),
	}, nil
}

type updatePolicyParams struct {
	BaseBps           *uint32 `json:"baseBps,omitempty"`
	Alpha             *uint64 `json:"alpha,omitempty"`
	Beta              *uint64 `json:"beta,omitempty"`
	GammaBps          *uint32 `json:"gammaBps,omitempty"`
	PanicThresholdBps *uint32 `json:"panicThresholdBps,omitempty"`
	PanicRateBps      *uint32 `json:"panicRateBps,omitempty"`
	Enabled           *bool   `json:"enabled,omitempty"`
}

func handleUpdatePolicy(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params updatePolicyParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	policy, err := s.node.UpdateTaxPolicy(s.authority, core.PolicyUpdate{
		BaseBps:           params.BaseBps,
		Alpha:             params.Alpha,
		Beta:              params.Beta,
		GammaBps:          params.GammaBps,
		PanicThresholdBps: params.PanicThresholdBps,
		PanicRateBps:      params.PanicRateBps,
		Enabled:           params.Enabled,
	})
	if err != nil {
		return nil, errCode(err)
	}
	return map[string]interface{}{
		"version": policy.Version,
		"baseBps": policy.BaseBps,
	}, nil
}

func handleAddExempt(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	return s.exemptChange(raw, true)
}

func handleRemoveExempt(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	return s.exemptChange(raw, false)
}

func (s *Server) exemptChange(raw json.RawMessage, add bool) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	var err error
	if add {
		err = s.node.AddExempt(s.authority, addr)
	} else {
		err = s.node.RemoveExempt(s.authority, addr)
	}
	if err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleFreeze(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
		Reason  uint8  `json:"reason"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.FreezeHolder(s.authority, addr, params.Reason); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleUnfreeze(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	addr, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.UnfreezeHolder(s.authority, addr); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleSetPaused(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Paused bool `json:"paused"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetPaused(s.authority, params.Paused); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleEmergencyWithdraw(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	from, rpcErr := parseAddr(params.From)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddr(params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.EmergencyWithdraw(s.authority, from, to, amount); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

func handleUpdateAuthority(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	next, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.UpdateAuthority(s.authority, next); err != nil {
		return nil, errCode(err)
	}
	s.authority = next
	return map[string]bool{"ok": true}, nil
}

func handleSetTreasury(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Address string `json:"address"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	next, rpcErr := parseAddr(params.Address)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if err := s.node.SetTreasury(s.authority, next); err != nil {
		return nil, errCode(err)
	}
	return map[string]bool{"ok": true}, nil
}

type initGenesisParams struct {
	Authority    string            `json:"authority"`
	Treasury     string            `json:"treasury"`
	Collector    string            `json:"collector"`
	PoolAccounts map[string]string `json:"poolAccounts"`
}

func handleInitGenesis(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params initGenesisParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	authority, rpcErr := parseAddr(params.Authority)
	if rpcErr != nil {
		return nil, rpcErr
	}
	treasury, rpcErr := parseAddr(params.Treasury)
	if rpcErr != nil {
		return nil, rpcErr
	}
	collector, rpcErr := parseAddr(params.Collector)
	if rpcErr != nil {
		return nil, rpcErr
	}
	accounts := make(map[pool.Kind][20]byte, len(params.PoolAccounts))
	for name, value := range params.PoolAccounts {
		kind, rpcErr := poolKindFromName(name)
		if rpcErr != nil {
			return nil, rpcErr
		}
		addr, rpcErr := parseAddr(value)
		if rpcErr != nil {
			return nil, rpcErr
		}
		accounts[kind] = addr
	}
	err := s.node.InitGenesis(core.Genesis{
		Authority:    authority,
		Treasury:     treasury,
		Collector:    collector,
		PoolAccounts: accounts,
	})
	if err != nil {
		return nil, errCode(err)
	}
	s.authority = authority
	return map[string]bool{"ok": true}, nil
}

type poolStatusResult struct {
	Kind         string `json:"kind"`
	Allocation   string `json:"allocation"`
	Released     string `json:"released"`
	Releasable   string `json:"releasable"`
	Unlocked     bool   `json:"unlocked"`
	Inconsistent bool   `json:"inconsistent"`
}

func handlePoolStatus(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Kind string `json:"kind"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	kind, rpcErr := poolKindFromName(params.Kind)
	if rpcErr != nil {
		return nil, rpcErr
	}
	status, err := s.node.PoolStatus(kind)
	if err != nil {
		return nil, errCode(err)
	}
	return poolStatusResult{
		Kind:         status.Kind.String(),
		Allocation:   status.Allocation.String(),
		Released:     status.Released.String(),
		Releasable:   status.Releasable.String(),
		Unlocked:     status.Unlocked,
		Inconsistent: status.Inconsistent,
	}, nil
}

type poolReleaseParams struct {
	Kind             string `json:"kind"`
	To               string `json:"to"`
	Amount           string `json:"amount"`
	Approvals        int    `json:"approvals"`
	TriggerSatisfied bool   `json:"triggerSatisfied"`
}

func handlePoolRelease(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params poolReleaseParams
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	kind, rpcErr := poolKindFromName(params.Kind)
	if rpcErr != nil {
		return nil, rpcErr
	}
	to, rpcErr := parseAddr(params.To)
	if rpcErr != nil {
		return nil, rpcErr
	}
	amount, rpcErr := parseAmount(params.Amount)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.node.ReleasePool(s.authority, kind, to, amount, pool.ReleaseAuthorization{
		Approvals:        params.Approvals,
		TriggerSatisfied: params.TriggerSatisfied,
	})
	if err != nil {
		return nil, errCode(err)
	}
	return map[string]string{
		"amount":   receipt.Amount.String(),
		"released": receipt.Released.String(),
	}, nil
}

type auctionResult struct {
	AssetID      string `json:"assetId"`
	Owner        string `json:"owner"`
	Price        string `json:"price"`
	StartPrice   string `json:"startPrice"`
	TauntMessage string `json:"tauntMessage"`
	CreatedAt    int64  `json:"createdAt"`
	LastSeizedAt int64  `json:"lastSeizedAt"`
}

func handleAuctionCreate(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Creator    string `json:"creator"`
		AssetID    string `json:"assetId"`
		StartPrice string `json:"startPrice"`
		Message    string `json:"message"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	creator, rpcErr := parseAddr(params.Creator)
	if rpcErr != nil {
		return nil, rpcErr
	}
	startPrice, rpcErr := parseAmount(params.StartPrice)
	if rpcErr != nil {
		return nil, rpcErr
	}
	created, err := s.node.CreateAuction(creator, params.AssetID, startPrice, params.Message)
	if err != nil {
		return nil, errCode(err)
	}
	return renderAuction(created), nil
}

func handleAuctionSeize(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		Bidder  string `json:"bidder"`
		AssetID string `json:"assetId"`
		Message string `json:"message"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	bidder, rpcErr := parseAddr(params.Bidder)
	if rpcErr != nil {
		return nil, rpcErr
	}
	receipt, err := s.node.SeizeAuction(bidder, params.AssetID, params.Message)
	if err != nil {
		return nil, errCode(err)
	}
	return map[string]string{
		"oldOwner": formatAddr(receipt.OldOwner),
		"newOwner": formatAddr(receipt.NewOwner),
		"newPrice": receipt.NewPrice.String(),
		"fee":      receipt.Fee.String(),
		"payout":   receipt.Payout.String(),
	}, nil
}

func handleAuctionGet(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	var params struct {
		AssetID string `json:"assetId"`
	}
	if rpcErr := decodeParams(raw, &params); rpcErr != nil {
		return nil, rpcErr
	}
	a, err := s.node.GetAuction(params.AssetID)
	if err != nil {
		return nil, errCode(err)
	}
	return renderAuction(a), nil
}

func handleEventsRecent(s *Server, raw json.RawMessage) (interface{}, *rpcError) {
	if s.sink == nil {
		return nil, &rpcError{Code: codeServerError, Message: "event sink not configured"}
	}
	params := struct {
		Limit int `json:"limit"`
	}{Limit: 100}
	if len(raw) > 0 {
		_ = decodeParams(raw, &params)
	}
	recent, err := s.sink.Recent(params.Limit)
	if err != nil {
		return nil, errCode(err)
	}
	return recent, nil
}

func renderAuction(a *auction.Auction) auctionResult {
	return auctionResult{
		AssetID:      a.AssetID,
		Owner:        formatAddr(a.Owner),
		Price:        a.Price.String(),
		StartPrice:   a.StartPrice.String(),
		TauntMessage: a.TauntMessage,
		CreatedAt:    a.CreatedAt,
		LastSeizedAt: a.LastSeizedAt,
	}
}
