// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package resolver

import "testing"

func TestTraitDispatcherInherentWinsOverTrait(t *testing.T) {
	d := NewTraitDispatcher()
	d.AddTraitMethod("Greeter", "greet", 1)
	d.AddImplementation("Bot", "Greeter")
	d.AddInherentMethod("Bot", "greet", 2)

	id, ok := d.Dispatch("Bot", "greet")
	if !ok || id != 2 {
		t.Fatalf("Dispatch(Bot, greet) = (%v, %v), want (2, true)", id, ok)
	}
}

func TestTraitDispatcherSingleTraitMatchResolves(t *testing.T) {
	d := NewTraitDispatcher()
	d.AddTraitMethod("Greeter", "greet", 1)
	d.AddImplementation("Bot", "Greeter")

	id, ok := d.Dispatch("Bot", "greet")
	if !ok || id != 1 {
		t.Fatalf("Dispatch(Bot, greet) = (%v, %v), want (1, true)", id, ok)
	}
}

func TestTraitDispatcherAmbiguousTraitMethodUnresolved(t *testing.T) {
	d := NewTraitDispatcher()
	d.AddTraitMethod("Greeter", "greet", 1)
	d.AddTraitMethod("Saluter", "greet", 2)
	d.AddImplementation("Bot", "Greeter")
	d.AddImplementation("Bot", "Saluter")

	if _, ok := d.Dispatch("Bot", "greet"); ok {
		t.Fatalf("Dispatch(Bot, greet) with two matching traits = ok, want unresolved")
	}
}

func TestTraitDispatcherUnknownTypeUnresolved(t *testing.T) {
	d := NewTraitDispatcher()
	if _, ok := d.Dispatch("Ghost", "greet"); ok {
		t.Fatalf("Dispatch(Ghost, greet) on unknown type = ok, want unresolved")
	}
}

func TestTraitDispatcherUnknownMethodUnresolved(t *testing.T) {
	d := NewTraitDispatcher()
	d.AddInherentMethod("Bot", "greet", 1)

	if _, ok := d.Dispatch("Bot", "farewell"); ok {
		t.Fatalf("Dispatch(Bot, farewell) for unrecorded method = ok, want unresolved")
	}
}
