package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func validInstruction() TradeInstruction {
	var instr TradeInstruction
	instr.Symbol = "BTCUSDT"
	instr.Side = SideBuy
	instr.Leverage = 5
	instr.MaxWaitSeconds = 60
	for i := 0; i < TierCount; i++ {
		instr.Tiers[i] = Tier{Qty: decimal.NewFromInt(1), LimitPrice: decimal.NewFromInt(100)}
		instr.Protections[i] = Protection{TakeProfit: decimal.NewFromInt(120), StopLoss: decimal.NewFromInt(80)}
	}
	return instr
}

func TestSide_Opposite(t *testing.T) {
	if SideBuy.Opposite() != SideSell {
		t.Errorf("expected BUY's opposite to be SELL")
	}
	if SideSell.Opposite() != SideBuy {
		t.Errorf("expected SELL's opposite to be BUY")
	}
}

func TestTradeInstruction_Validate_OK(t *testing.T) {
	if err := validInstruction().Validate(); err != nil {
		t.Errorf("expected valid instruction, got error: %v", err)
	}
}

func TestTradeInstruction_Validate_RejectsMissingSymbol(t *testing.T) {
	instr := validInstruction()
	instr.Symbol = ""
	if err := instr.Validate(); err == nil {
		t.Error("expected an error for missing symbol")
	}
}

func TestTradeInstruction_Validate_RejectsBadSide(t *testing.T) {
	instr := validInstruction()
	instr.Side = "HOLD"
	if err := instr.Validate(); err == nil {
		t.Error("expected an error for an invalid side")
	}
}

func TestTradeInstruction_Validate_RejectsNonPositiveQty(t *testing.T) {
	instr := validInstruction()
	instr.Tiers[1].Qty = decimal.Zero
	if err := instr.Validate(); err == nil {
		t.Error("expected an error for a zero tier quantity")
	}
}

func TestTradeInstruction_Validate_RejectsNegativeMaxWait(t *testing.T) {
	instr := validInstruction()
	instr.MaxWaitSeconds = -1
	if err := instr.Validate(); err == nil {
		t.Error("expected an error for negative max_wait_seconds")
	}
}

func TestTradeInstruction_Validate_AllowsZeroMaxWait(t *testing.T) {
	instr := validInstruction()
	instr.MaxWaitSeconds = 0
	if err := instr.Validate(); err != nil {
		t.Errorf("expected max_wait_seconds=0 to be valid, got: %v", err)
	}
}
