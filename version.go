package tellerflow

// Version is the current release of the tellerflow module.
const Version = "0.1.0"
