package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/specialistvlad/propshell/internal/kind"
	"github.com/specialistvlad/propshell/internal/objects"
	"github.com/specialistvlad/propshell/internal/shellerr"
	"github.com/specialistvlad/propshell/internal/value"
)

var headingStyle = lipgloss.NewStyle().Bold(true)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

// dump prints a kind, an object, or an overview when name is empty. Kinds
// win over objects of the same name.
func (i *Interpreter) dump(name string) error {
	var b strings.Builder

	switch {
	case name == "":
		i.dumpOverview(&b)
	default:
		if k, err := i.cfg.Kinds.Lookup(name); err == nil {
			dumpKind(&b, k.Spec, k.Declarative())
			break
		}
		obj, err := i.cfg.Objects.Get(name)
		if err != nil {
			return fmt.Errorf("%w: no kind or object named '%s'", shellerr.ErrUnknownObject, name)
		}
		i.dumpObject(&b, obj)
	}

	_, err := fmt.Fprint(i.cfg.Out, b.String())
	return err
}

func (i *Interpreter) dumpOverview(b *strings.Builder) {
	kinds := newTable("KIND", "PROPERTIES", "SIGNALS", "DESCRIPTION")
	for _, name := range i.cfg.Kinds.Kinds() {
		k, _ := i.cfg.Kinds.Lookup(name)
		kinds.Row(name, strconv.Itoa(len(k.Spec.Properties)), strconv.Itoa(len(k.Spec.Signals)), k.Spec.Description)
	}
	b.WriteString(headingStyle.Render("Kinds") + "\n")
	b.WriteString(kinds.String() + "\n")

	objs := newTable("OBJECT", "KIND")
	for _, name := range i.cfg.Objects.Names() {
		if h, ok := i.cfg.Objects.Lookup(name); ok {
			objs.Row(name, h.Kind())
		}
	}
	b.WriteString(headingStyle.Render("Objects") + "\n")
	b.WriteString(objs.String() + "\n")
}

func dumpKind(b *strings.Builder, spec *kind.Spec, declarative bool) {
	title := "Kind " + spec.Name
	if declarative {
		title += " (declarative)"
	}
	b.WriteString(headingStyle.Render(title) + "\n")
	if spec.Description != "" {
		b.WriteString(spec.Description + "\n")
	}

	props := newTable("PROPERTY", "TYPE", "ACCESS", "DEFAULT", "RANGE", "DESCRIPTION")
	for _, p := range spec.Properties {
		props.Row(p.Name, p.Type.String(), p.Access.Flags(), value.Format(p.Default), formatRange(p.Range), p.Description)
	}
	b.WriteString(props.String() + "\n")

	if len(spec.Signals) == 0 {
		return
	}
	sigs := newTable("SIGNAL", "DESCRIPTION")
	for _, s := range spec.Signals {
		sigs.Row(s.Name, s.Description)
	}
	b.WriteString(sigs.String() + "\n")
}

func (i *Interpreter) dumpObject(b *strings.Builder, obj *objects.Object) {
	spec := obj.Spec()
	b.WriteString(headingStyle.Render(fmt.Sprintf("Object %s (%s)", obj.Name, spec.Name)) + "\n")

	vals := newTable("PROPERTY", "TYPE", "ACCESS", "VALUE")
	for id, p := range spec.Properties {
		v := "-"
		if p.Access.Readable() {
			v = value.Format(obj.Instance.Get(kind.PropID(id)))
		}
		vals.Row(p.Name, p.Type.String(), p.Access.Flags(), v)
	}
	b.WriteString(vals.String() + "\n")

	if len(spec.Signals) > 0 {
		b.WriteString("signals: " + strings.Join(spec.SignalNames(), ", ") + "\n")
	}

	bindings := i.cfg.Engine.Bindings(obj.Name)
	if len(bindings) > 0 {
		b.WriteString("bindings:\n")
		for _, bd := range bindings {
			b.WriteString("  " + bd.String() + "\n")
		}
	}

	handlers := i.handlers.forObject(obj.Name)
	if len(handlers) > 0 {
		b.WriteString("handlers:\n")
		for _, h := range handlers {
			fmt.Fprintf(b, "  on %s (%d commands)\n", h.event, len(h.body))
		}
	}
}

func formatRange(r *value.Range) string {
	if r == nil {
		return ""
	}
	return "[" + strconv.FormatFloat(r.Min, 'g', -1, 64) + ", " + strconv.FormatFloat(r.Max, 'g', -1, 64) + "]"
}
