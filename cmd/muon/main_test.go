package main

import (
	"testing"

	"github.com/lattis-muon/muon-go/internal/ninjabuild"
)

func TestJoinNodes(t *testing.T) {
	nodes := []*ninjabuild.Node{{Path: "a.o"}, {Path: "b.o"}}
	if got := joinNodes(nodes); got != "a.o b.o" {
		t.Fatalf("joinNodes = %q", got)
	}
	if got := joinNodes(nil); got != "" {
		t.Fatalf("joinNodes(nil) = %q", got)
	}
}

func TestGuessParallelism(t *testing.T) {
	if guessParallelism() <= 0 {
		t.Fatal("guessParallelism must return a positive job count")
	}
}
