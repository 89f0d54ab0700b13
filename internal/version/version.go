// ABOUTME: Version information for hdmiplay
// ABOUTME: Reported in logs, the status TUI and the mDNS advertisement
package version

const (
	// Version is the current release
	Version = "0.3.0"

	// Product is the name advertised to peers
	Product = "hdmiplay"

	// Manufacturer is the software vendor
	Manufacturer = "Resonate"
)
