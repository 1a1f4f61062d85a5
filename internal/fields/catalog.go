// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package fields

import (
	"fmt"
	"strings"
	"sync"
)

// BuiltinModule is the module the built-in value classes and widgets are
// registered under.
const BuiltinModule = "forms"

// Catalog maps dotted paths ("module.Attribute") onto value classes and
// widget renderers. Extension authors register their handles at startup;
// extension templates then refer to them by path.
type Catalog struct {
	mu           sync.RWMutex
	valueClasses map[string]map[string]ValueClass
	widgets      map[string]map[string]Renderer
}

// NewCatalog returns a catalog holding the built-in value classes and widgets.
func NewCatalog() *Catalog {
	c := &Catalog{
		valueClasses: make(map[string]map[string]ValueClass),
		widgets:      make(map[string]map[string]Renderer),
	}
	for _, vc := range []ValueClass{
		CharField{}, EmailField{}, BooleanField{}, ChoiceField{}, MultipleChoiceField{},
		FileField{}, DateField{}, DateTimeField{}, FloatField{}, IntegerField{}, URLField{},
	} {
		c.RegisterValueClass(BuiltinModule+"."+vc.Name(), vc)
	}
	for name, r := range builtinWidgets() {
		c.RegisterWidget(BuiltinModule+"."+name, r)
	}
	return c
}

func builtinWidgets() map[string]Renderer {
	return map[string]Renderer{
		"TextInput":              InputWidget{WidgetName: "TextInput", InputType: "text"},
		"EmailInput":             InputWidget{WidgetName: "EmailInput", InputType: "email"},
		"NumberInput":            InputWidget{WidgetName: "NumberInput", InputType: "number"},
		"URLInput":               InputWidget{WidgetName: "URLInput", InputType: "url"},
		"DateInput":              InputWidget{WidgetName: "DateInput", InputType: "text"},
		"DateTimeInput":          InputWidget{WidgetName: "DateTimeInput", InputType: "text"},
		"HiddenInput":            InputWidget{WidgetName: "HiddenInput", InputType: "hidden"},
		"FileInput":              InputWidget{WidgetName: "FileInput", InputType: "file", HideValue: true},
		"Textarea":               TextareaWidget{},
		"CheckboxInput":          CheckboxInput{},
		"Select":                 SelectInput{},
		"SelectMultiple":         SelectInput{Multiple: true},
		"RadioSelect":            ChoiceList{WidgetName: "RadioSelect", InputType: "radio"},
		"CheckboxSelectMultiple": ChoiceList{WidgetName: "CheckboxSelectMultiple", InputType: "checkbox"},
		"SelectDateWidget":       SelectDate{},
	}
}

func splitPath(path string) (module, attr string, err error) {
	i := strings.LastIndex(path, ".")
	if i <= 0 || i == len(path)-1 {
		return "", "", fmt.Errorf("%w: %q is not a dotted path", ErrModuleNotFound, path)
	}
	return path[:i], path[i+1:], nil
}

// RegisterValueClass makes vc importable under path. Re-registering a path
// replaces the previous handle.
func (c *Catalog) RegisterValueClass(path string, vc ValueClass) {
	module, attr, err := splitPath(path)
	if err != nil {
		panic(fmt.Sprintf("fields: RegisterValueClass: %v", err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.valueClasses[module] == nil {
		c.valueClasses[module] = make(map[string]ValueClass)
	}
	c.valueClasses[module][attr] = vc
}

// RegisterWidget makes r importable under path.
func (c *Catalog) RegisterWidget(path string, r Renderer) {
	module, attr, err := splitPath(path)
	if err != nil {
		panic(fmt.Sprintf("fields: RegisterWidget: %v", err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.widgets[module] == nil {
		c.widgets[module] = make(map[string]Renderer)
	}
	c.widgets[module][attr] = r
}

// ImportValueClass resolves a dotted path to a registered value class.
func (c *Catalog) ImportValueClass(path string) (ValueClass, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.valueClasses, path)
}

// ImportWidget resolves a dotted path to a registered widget renderer.
func (c *Catalog) ImportWidget(path string) (Renderer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lookup(c.widgets, path)
}

func lookup[T any](modules map[string]map[string]T, path string) (T, error) {
	var zero T
	module, attr, err := splitPath(path)
	if err != nil {
		return zero, err
	}
	attrs, ok := modules[module]
	if !ok {
		return zero, fmt.Errorf("%w: %q", ErrModuleNotFound, module)
	}
	v, ok := attrs[attr]
	if !ok {
		return zero, fmt.Errorf("%w: module %q has no attribute %q", ErrAttributeNotFound, module, attr)
	}
	return v, nil
}
