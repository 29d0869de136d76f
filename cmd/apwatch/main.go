// Apwatch - Rogue Access Point Watchdog
// Scan. Compare. Alert.
package main

func main() {
	Execute()
}
