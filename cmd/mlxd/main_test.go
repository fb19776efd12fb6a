package main

import "testing"

func TestPanelURL(t *testing.T) {
	cases := map[string]string{
		":8090":          "http://127.0.0.1:8090",
		"0.0.0.0:8090":   "http://127.0.0.1:8090",
		"127.0.0.1:9000": "http://127.0.0.1:9000",
		"localhost:8090": "http://localhost:8090",
		"badaddr":        "http://127.0.0.1",
	}
	for in, want := range cases {
		if got := panelURL(in); got != want {
			t.Fatalf("panelURL(%q)=%q want=%q", in, got, want)
		}
	}
}

func TestOverrideFromFlags(t *testing.T) {
	root := newRootCmd()
	if err := root.Flags().Set("addr", ":9999"); err != nil {
		t.Fatal(err)
	}
	if !root.Flags().Changed("addr") {
		t.Fatal("addr should be marked changed")
	}
	if root.Flags().Changed("models-dir") {
		t.Fatal("models-dir should not be marked changed")
	}
}
