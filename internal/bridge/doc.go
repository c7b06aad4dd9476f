// Package bridge implements the two message-transformation roles of the
// service: the Splitter, which fans a bundled multi-value message out into
// one indexed message per value, and the Reassembler, which collects indexed
// messages back into a single bundled message once every slot is populated.
package bridge
