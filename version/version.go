package version

// Version is the service version reported by /health
const Version = "1.0.0"
