package extract

import "testing"

func TestIsTransaction(t *testing.T) {
	tests := []struct {
		name string
		body string
		want bool
	}{
		{"debit alert", "Rs.500.00 debited from A/c XX1234 towards Swiggy.", true},
		{"credit to card", "INR 2,000 credited to your Card ending XX9911", true},
		{"otp", "Your OTP for login is 493021. Do not share.", false},
		{"otp with account wording", "OTP 4455 to confirm debited amount on A/c XX1234", false},
		{"verification", "A/c XX1234 credited. Verification pending for KYC.", false},
		{"no movement verb", "Your card XX1234 was charged Rs 300", false},
		{"no account marker", "Rs 300 debited via UPI", false},
		// short body with a standalone 4 digit number is treated as an OTP
		{"short with bare number", "Rs 500 debited from A/c 1234", false},
		{"short multi-line with bare number", "Rs 500 debited\nfrom A/c 1234", true},
		{
			"long with bare number",
			"Rs 1500 debited from A/c XX1234 on 05-01-2024 at AMAZON RETAIL. Avl bal Rs 10000.00. Thank you for banking with us.",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransaction("VM-HDFCBK", tt.body); got != tt.want {
				t.Errorf("IsTransaction(%q): got %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestResolveInstitution(t *testing.T) {
	tests := []struct {
		sender string
		want   string
	}{
		{"VM-HDFCBK", "HDFC Bank"},
		{"AD-SBIINB", "State Bank of India"},
		{"jd-icicib", "ICICI Bank"},
		{"BOBTXN", "Bank of Baroda"},
		{"VK-YESBNK", "Yes Bank"},
		{"AX-UNIONB", "Union Bank"},
		{"IndusInd", "IndusInd Bank"},
		{"com.phonepe.app", "PhonePe"},
		{"AMAZONPAY", "Amazon Pay"},
		// earlier table entries win over later ones
		{"HDFC-PAYTM", "HDFC Bank"},
		{"PAYTM-HDFC", "HDFC Bank"},
		{"MYBANK", "MYBANK"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := ResolveInstitution(tt.sender); got != tt.want {
			t.Errorf("ResolveInstitution(%q): got %q, want %q", tt.sender, got, tt.want)
		}
	}
}

func TestNormalizeMerchant(t *testing.T) {
	long := "Supercalifragilisticexpialidocious Stores Private Limited Bangalore"

	tests := []struct {
		raw  string
		want string
	}{
		{"  Swiggy  ", "Swiggy"},
		{"Big   Bazaar\t(Pune)", "Big Bazaar Pune"},
		{"AT&T's Store-1.", "AT&T's Store-1."},
		{"café ☕ Mocha", "café Mocha"},
		{long, "Supercalifragilisticexpialidocious Stores Private"},
		{"Unknown", "Unknown"},
		{"", ""},
	}

	for _, tt := range tests {
		got := NormalizeMerchant(tt.raw)
		if got != tt.want {
			t.Errorf("NormalizeMerchant(%q): got %q, want %q", tt.raw, got, tt.want)
		}
		if again := NormalizeMerchant(got); again != got {
			t.Errorf("NormalizeMerchant not idempotent for %q: %q then %q", tt.raw, got, again)
		}
	}
}

func TestMerchantKey(t *testing.T) {
	if got := MerchantKey("  Big Bazaar "); got != "big bazaar" {
		t.Errorf("MerchantKey: got %q, want %q", got, "big bazaar")
	}
}
