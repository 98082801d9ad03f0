package domain

import "testing"

func TestFilterPolicyApply(t *testing.T) {
	cases := []struct {
		policy FilterPolicy
		member bool
		want   bool
	}{
		{IncludeCountryCodes, true, true},
		{IncludeCountryCodes, false, false},
		{ExcludeCountryCodes, true, false},
		{ExcludeCountryCodes, false, true},
	}

	for _, tc := range cases {
		if got := tc.policy.Apply(tc.member); got != tc.want {
			t.Errorf("%s.Apply(%v) = %v, want %v", tc.policy, tc.member, got, tc.want)
		}
	}
}

func TestParseFilterPolicy(t *testing.T) {
	if p, err := ParseFilterPolicy(" EXCLUDE "); err != nil || p != ExcludeCountryCodes {
		t.Fatalf("ParseFilterPolicy(exclude) = %v, %v", p, err)
	}
	if p, err := ParseFilterPolicy(""); err != nil || p != IncludeCountryCodes {
		t.Fatalf("ParseFilterPolicy(\"\") = %v, %v", p, err)
	}
	if _, err := ParseFilterPolicy("deny"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}

func TestParseFamily(t *testing.T) {
	if f, ok := ParseFamily("IPv6"); !ok || f != FamilyIPv6 {
		t.Fatalf("ParseFamily(IPv6) = %q, %v", f, ok)
	}
	if _, ok := ParseFamily("ipv5"); ok {
		t.Fatal("ParseFamily accepted ipv5")
	}
}
