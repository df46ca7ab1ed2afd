/*
Package config loads and validates the ContainerConfig external-collaborator
surface described in spec.md §6: a YAML document the core reads but never
persists. Load parses a file into types.ContainerConfig; Validate enforces
every rule spec.md §6 lists, returning InvalidArgument on the first
violation.
*/
package config
