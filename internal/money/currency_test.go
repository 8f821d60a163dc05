package money

import "testing"

func TestCurrencyByCode(t *testing.T) {
	c, err := CurrencyByCode("BTC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Precision != 8 {
		t.Errorf("BTC precision = %d, want 8", c.Precision)
	}
	if !c.IsCrypto() {
		t.Error("BTC.IsCrypto() = false")
	}
}

func TestCurrencyByCodeUnknown(t *testing.T) {
	if _, err := CurrencyByCode("DOGE"); err == nil {
		t.Error("expected error for unsupported currency")
	}
}

func TestCurrenciesImmutability(t *testing.T) {
	list := Currencies()
	list[0].Code = "HACKED"

	if Currencies()[0].Code == "HACKED" {
		t.Error("Currencies() returned a mutable reference to the registry")
	}
}

func TestFiatCryptoKinds(t *testing.T) {
	if !USD().IsFiat() || !EUR().IsFiat() || !GBP().IsFiat() {
		t.Error("fiat currencies misclassified")
	}
	if !BTC().IsCrypto() || !ETH().IsCrypto() || !XLM().IsCrypto() || !USDT().IsCrypto() {
		t.Error("crypto currencies misclassified")
	}
}
