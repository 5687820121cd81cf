// Package factory is a small generic registry for configuration-driven
// module construction. A module is declared as a type name plus raw settings;
// the registered factory decodes the settings into its own typed struct and
// returns the implementation. The metrics sink wiring is built on it.
package factory
