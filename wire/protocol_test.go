// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "testing"

// TestServiceFlagStringer tests the stringized output for service flag types.
func TestServiceFlagStringer(t *testing.T) {
	tests := []struct {
		in   ServiceFlag
		want string
	}{
		{0, "0x0"},
		{SFNodeNetwork, "SFNodeNetwork"},
		{SFNodeGetUTXO, "SFNodeGetUTXO"},
		{SFNodeBloom, "SFNodeBloom"},
		{SFNodeXthin, "SFNodeXthin"},
		{SFNodeMvcCash, "SFNodeMvcCash"},
		{0xffffffff, "SFNodeNetwork|SFNodeGetUTXO|SFNodeBloom|" +
			"SFNodeXthin|SFNodeMvcCash|0xffffffc8"},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d\n got: %s want: %s", i, result,
				test.want)
			continue
		}
	}
}

// TestMessageMagicStringer tests the stringized output for mvc network
// magics.
func TestMessageMagicStringer(t *testing.T) {
	tests := []struct {
		in   MessageMagic
		want string
	}{
		{MainNet, "MainNet"},
		{TestNet, "TestNet"},
		{RegTestNet, "RegTestNet"},
		{STNet, "STNet"},
		{MessageMagic{0x12, 0x34, 0x56, 0x78}, "Unknown MessageMagic (12345678)"},
	}

	t.Logf("Running %d tests", len(tests))
	for i, test := range tests {
		result := test.in.String()
		if result != test.want {
			t.Errorf("String #%d\n got: %s want: %s", i, result,
				test.want)
			continue
		}
	}
}
