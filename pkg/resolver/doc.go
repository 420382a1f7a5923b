/*
Package resolver provides pure, stateless entity resolution over utterance
text: implicit-amount tokens ("send everything"), negation constraints
("don't use savings"), and keyword-based slot hints.

All functions are side-effect free and safe to call from any goroutine
without synchronization. Pattern matching is first-match-wins over a
priority-ordered set; there is no scoring.
*/
package resolver
