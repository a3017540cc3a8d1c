package main

import "testing"

func TestParseHorRange(t *testing.T) {
	hor, err := parseHorRange("10,20", " 5, 45, 4")
	if err != nil {
		t.Fatalf("parseHorRange: %v", err)
	}
	if hor.Start.Inl != 10 || hor.Stop.Inl != 20 || hor.Step.Inl != 1 {
		t.Fatalf("unexpected inline range %+v", hor)
	}
	if hor.Start.Crl != 5 || hor.Stop.Crl != 45 || hor.Step.Crl != 4 || hor.NrCrl() != 11 {
		t.Fatalf("unexpected crossline range %+v", hor)
	}
	for _, bad := range []string{"10", "a,b", "20,10", "1,5,0", "1,2,3,4"} {
		if _, err := parseLineRange(bad); err == nil {
			t.Fatalf("%q should be rejected", bad)
		}
	}
}
