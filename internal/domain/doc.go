// Package domain contains the core entities of the batch engine,
// most importantly the Task record and its status lifecycle. It is
// independent of any specific infrastructure or delivery mechanism.
package domain
