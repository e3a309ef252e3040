// Package pattern holds the seed-pattern templates the matcher tries
// against a target address.
//
// A Pattern is an ordered list of slots. Each slot kind expands to a
// bounded set of seeds: a literal, a choice of literals, a caller-supplied
// context key (optionally with a well-known fallback), or a numeric index
// range. Candidates are produced lazily so wide patterns cost nothing
// until the matcher asks for them.
//
// A Library orders patterns by specificity so that, on the first match,
// the least ambiguous explanation wins.
package pattern
