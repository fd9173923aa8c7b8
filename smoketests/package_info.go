// Package smoketests contains the page smoke tests themselves and the test API they are
// written against.
//
// Infrastructure that is not specific to checking a web page, such as test contexts,
// filtering and result reporting, is in the lower-level framework package.
package smoketests
