package universe

// seedSymbols is the bundled starter universe used when no explicit list
// is configured and the provider directory is unreachable or disabled.
var seedSymbols = []string{
	"TSLA", "AMD", "PLTR", "APLD", "BBAI", "NOK", "AI", "ONDS", "ZENA",
	"MVIS", "IONQ", "U", "F", "T", "SOFI", "RIOT", "MARA", "CHPT", "DKNG",
	"RUN", "ENVX", "BBBYQ", "IQ", "LCID", "RIVN", "XPEV", "NIO", "BILI",
}

// SeedSymbols returns a copy of the bundled seed list.
func SeedSymbols() []string {
	out := make([]string, len(seedSymbols))
	copy(out, seedSymbols)
	return out
}
