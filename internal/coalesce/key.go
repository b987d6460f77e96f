package coalesce

// Key builds the RequestKey string from spec.md §3: the tuple
// (host, port, address_or_null, submitted_fingerprint_or_null). Using "|"
// as a separator is safe because host/address never legally contain it
// and port is decimal ASCII.
func Key(host, port, address, submittedFP string) string {
	return host + "|" + port + "|" + address + "|" + submittedFP
}
