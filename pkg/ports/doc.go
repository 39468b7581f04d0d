/*
Package ports defines the driven ports (interfaces) of witmorph.

These interfaces decouple the planner and executor from external
implementations, so templates, records, checkpoints and exports can live in
files, SQL databases, Redis or object storage.

# Key Interfaces

  - TemplateLoader / MappingSource: supply the schema snapshots and the mapping.
  - RecordStore: the live store a plan is applied to.
  - ProgressStore: checkpoints that let a halted run resume.
  - Archive: destination for records exported before destruction.
  - DistributedLocker: guards a plan against concurrent applies.
*/
package ports
