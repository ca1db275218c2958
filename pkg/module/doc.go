// SPDX-License-Identifier: MPL-2.0

// Package module layers named, executable code on top of [resource.Request].
//
// # Modules
//
// A [Module] has-a Request core. It carries a dotted full name, a minified and a
// non-minified URL (chosen by the registry's debug flag), and, once executed, a
// [Scope] through which other code reads and writes the module's bindings.
// Execution is idempotent and always runs ready parent modules first.
//
// # Manifests
//
// A [Manifest] is a Module whose payload is scanned for dependency declarations by
// a [DependencyExtractor] before it becomes ready. The [Resolver] maps each dotted
// dependency name to a manifest path and wires the resulting manifests as parents,
// so readiness and execution follow the declared dependency graph.
//
// # Naming
//
// Full names are dot-separated identifiers such as "app.ui.forms". Each segment
// starts with a letter or underscore and contains letters, digits, or underscores.
package module
