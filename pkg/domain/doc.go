/*
Package domain contains the core models of the witmorph migration planner.

It defines the schema snapshot of a process template, the explicit mapping
between two template versions and the closed set of migration actions. This
package is kept pure and free of I/O, following Hexagonal Architecture
principles.

# Key Entities

  - ProcessTemplate / EntityType: read-only snapshot of types, fields and workflow states.
  - Mapping: ordered source to target correspondence over types, fields and states.
  - Action: Rename, ExportData, CopyData, ModifyState or Destroy, each tagged with a Phase.
  - Plan: the ordered steps of one migration plus the per-entity comparison errors.
*/
package domain
