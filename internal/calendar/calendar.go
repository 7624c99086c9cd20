// Package calendar groups calendar exceptions by scope and answers whether an
// interval is closed, reporting the first blocking scope in a fixed priority
// order: tenant, room, equipment, staff.
package calendar

import (
	"studiobook/internal/apperr"
	"studiobook/internal/interval"
)

// ScopeKind is the entity type an exception applies to.
type ScopeKind string

const (
	ScopeTenant    ScopeKind = "tenant"
	ScopeRoom      ScopeKind = "room"
	ScopeEquipment ScopeKind = "equipment"
	ScopeStaff     ScopeKind = "staff"
)

// Valid reports whether k is a known scope.
func (k ScopeKind) Valid() bool {
	switch k {
	case ScopeTenant, ScopeRoom, ScopeEquipment, ScopeStaff:
		return true
	}
	return false
}

// Scope identifies what an exception blocks. An empty TargetID means every
// entity of that kind. Tenant scopes are always global.
type Scope struct {
	Kind     ScopeKind
	TargetID string
}

func Tenant() Scope { return Scope{Kind: ScopeTenant} }

func Room(id string) Scope { return Scope{Kind: ScopeRoom, TargetID: id} }

func Equipment(id string) Scope { return Scope{Kind: ScopeEquipment, TargetID: id} }

func Staff(id string) Scope { return Scope{Kind: ScopeStaff, TargetID: id} }

// Global reports whether the scope applies to every entity of its kind.
func (s Scope) Global() bool { return s.TargetID == "" }

func (s Scope) String() string {
	if s.Global() {
		return string(s.Kind)
	}
	return string(s.Kind) + ":" + s.TargetID
}

// Exception is one calendar exception record.
type Exception struct {
	Scope    Scope
	Interval interval.Interval
}

// Reason describes the exception that closed an interval.
type Reason struct {
	Scope    Scope
	Interval interval.Interval
}

// Query names the entities a reservation touches.
type Query struct {
	RoomID       string
	EquipmentIDs []string
	StaffIDs     []string
}

// Context holds sorted exception intervals per scope.
type Context struct {
	global   map[ScopeKind][]interval.Interval
	targeted map[ScopeKind]map[string][]interval.Interval
}

// Build groups raw exception records. Records with an unknown scope are dropped.
func Build(exceptions []Exception) *Context {
	c := &Context{
		global:   make(map[ScopeKind][]interval.Interval),
		targeted: make(map[ScopeKind]map[string][]interval.Interval),
	}

	for _, ex := range exceptions {
		kind := ex.Scope.Kind
		if !kind.Valid() || !ex.Interval.Valid() {
			continue
		}
		if kind == ScopeTenant || ex.Scope.Global() {
			c.global[kind] = append(c.global[kind], ex.Interval)
			continue
		}
		byTarget := c.targeted[kind]
		if byTarget == nil {
			byTarget = make(map[string][]interval.Interval)
			c.targeted[kind] = byTarget
		}
		byTarget[ex.Scope.TargetID] = append(byTarget[ex.Scope.TargetID], ex.Interval)
	}

	for kind := range c.global {
		interval.Sort(c.global[kind])
	}
	for _, byTarget := range c.targeted {
		for id := range byTarget {
			interval.Sort(byTarget[id])
		}
	}
	return c
}

// Intervals returns the sorted intervals recorded for exactly this scope.
func (c *Context) Intervals(s Scope) []interval.Interval {
	if c == nil {
		return nil
	}
	if s.Kind == ScopeTenant || s.Global() {
		return c.global[s.Kind]
	}
	return c.targeted[s.Kind][s.TargetID]
}

// Blocking returns every interval that closes the given entity: the global
// intervals of its kind plus those targeted at it.
func (c *Context) Blocking(s Scope) []interval.Interval {
	if c == nil {
		return nil
	}
	global := c.global[s.Kind]
	if s.Kind == ScopeTenant || s.Global() {
		return global
	}
	targeted := c.targeted[s.Kind][s.TargetID]
	if len(global) == 0 {
		return targeted
	}
	if len(targeted) == 0 {
		return global
	}
	merged := make([]interval.Interval, 0, len(global)+len(targeted))
	merged = append(merged, global...)
	merged = append(merged, targeted...)
	interval.Sort(merged)
	return merged
}

type probe struct {
	scope     Scope
	intervals []interval.Interval
}

// probes lists the checks for q in priority order.
func (c *Context) probes(q Query) []probe {
	list := make([]probe, 0, 5+len(q.EquipmentIDs)+len(q.StaffIDs))
	list = append(list,
		probe{Tenant(), c.global[ScopeTenant]},
		probe{Scope{Kind: ScopeRoom}, c.global[ScopeRoom]},
	)
	if q.RoomID != "" {
		list = append(list, probe{Room(q.RoomID), c.targeted[ScopeRoom][q.RoomID]})
	}
	// Global equipment and staff closures apply even when nothing of that
	// kind was requested.
	list = append(list, probe{Scope{Kind: ScopeEquipment}, c.global[ScopeEquipment]})
	for _, id := range q.EquipmentIDs {
		list = append(list, probe{Equipment(id), c.targeted[ScopeEquipment][id]})
	}
	list = append(list, probe{Scope{Kind: ScopeStaff}, c.global[ScopeStaff]})
	for _, id := range q.StaffIDs {
		list = append(list, probe{Staff(id), c.targeted[ScopeStaff][id]})
	}
	return list
}

// FindClosedScope returns the first exception, in priority order, that
// overlaps iv. Only the first hit is reported.
func (c *Context) FindClosedScope(q Query, iv interval.Interval) (Reason, bool) {
	if c == nil {
		return Reason{}, false
	}
	for _, p := range c.probes(q) {
		if hit, ok := interval.FirstOverlap(p.intervals, iv); ok {
			return Reason{Scope: p.scope, Interval: hit}, true
		}
	}
	return Reason{}, false
}

// AssertOpen is FindClosedScope raised as a closed-scope failure.
func (c *Context) AssertOpen(q Query, iv interval.Interval) error {
	reason, closed := c.FindClosedScope(q, iv)
	if !closed {
		return nil
	}
	return apperr.ClosedScope(string(reason.Scope.Kind), reason.Scope.TargetID, reason.Interval.Start, reason.Interval.End)
}
