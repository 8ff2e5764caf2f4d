/*
Package intent implements deterministic keyword matching of free text against
the choices of a choice node.

Input and keywords go through the same normalization (NFKC width folding,
lower-casing, katakana to hiragana, punctuation removal), so Japanese input
matches without relying on whitespace tokenization.

Every choice gets a confidence in [0,1]:

  - an exact match of the whole input against a keyword or the choice text scores 1.0;
  - a keyword found at a word start (Latin) or a CJK keyword of two runes or more scores 0.8;
  - a keyword embedded inside a word, or a single CJK rune, scores 0.4;
  - every additional distinct keyword hit adds 0.25, capped at 1.0.

A hit on any exclude keyword disqualifies the choice. The best qualified choice
wins (first in list order on ties) and its confidence is mapped to a band with
two thresholds: Direct at or above High, Ambiguous at or above Low, NoMatch below.
*/
package intent
