package config

import (
	yaml3 "gopkg.in/yaml.v3"
)

// defaultConfig is the configuration the CLI starts from before flags and the
// config file are applied. It is also what generate-config writes out.
var defaultConfig = `
emulatorIP: "127.0.0.1"
emulatorPort: 8080
mode: "discovery"
cgroupPath: "/sys/fs/cgroup"
bpfObjPath: "/usr/lib/redirector/redirect_bpfel.o"
pinPath: "/sys/fs/bpf"
debug: false
configPath: ""
`

func GetDefaultConfig() string {
	return defaultConfig
}

func New() *Config {
	conf := &Config{}
	if err := yaml3.Unmarshal([]byte(defaultConfig), conf); err != nil {
		panic(err)
	}
	return conf
}
