// Package branch composes hierarchical channel id namespaces. It owns no
// channels itself — registry stores channels under their branch-prefixed
// global id — and is grounded on the teacher's router-tree prefix-joining
// idiom, adapted from URL path segments to '/'-joined channel ids.
package branch
