package pathutil

import (
	"encoding/json"
	"io/ioutil"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/skycoin/skycoin/src/util/logging"
	"gopkg.in/yaml.v3"
)

var log = logging.MustGetLogger("pathutil")

// ErrConfigNotFound is returned by FindConfigPath when no candidate exists.
var ErrConfigNotFound = errors.New("config not found")

// ConfigLocationType describes a config path's location type.
type ConfigLocationType string

const (
	// WorkingDirLoc represents the default working directory location for a configuration file.
	WorkingDirLoc = ConfigLocationType("WD")

	// HomeLoc represents the default home folder location for a configuration file.
	HomeLoc = ConfigLocationType("HOME")

	// LocalLoc represents the default /usr/local location for a configuration file.
	LocalLoc = ConfigLocationType("LOCAL")
)

// String implements fmt.Stringer for ConfigLocationType.
func (t ConfigLocationType) String() string {
	return string(t)
}

// Set implements pflag.Value for ConfigLocationType.
func (t *ConfigLocationType) Set(s string) error {
	for _, valid := range AllConfigLocationTypes() {
		if ConfigLocationType(s) == valid {
			*t = valid
			return nil
		}
	}
	return errors.Errorf("invalid config location type %q, valid types: %v", s, AllConfigLocationTypes())
}

// Type implements pflag.Value for ConfigLocationType.
func (t ConfigLocationType) Type() string {
	return "pathutil.ConfigLocationType"
}

// AllConfigLocationTypes returns all valid config location types.
func AllConfigLocationTypes() []ConfigLocationType {
	return []ConfigLocationType{
		WorkingDirLoc,
		HomeLoc,
		LocalLoc,
	}
}

// ConfigPaths contains a map of configuration paths, based on ConfigLocationTypes.
type ConfigPaths map[ConfigLocationType]string

// String implements fmt.Stringer for ConfigPaths.
func (dp ConfigPaths) String() string {
	raw, err := json.MarshalIndent(dp, "", "\t")
	if err != nil {
		return err.Error()
	}
	return string(raw)
}

// Get obtains a path stored under given configuration location type.
func (dp ConfigPaths) Get(cpType ConfigLocationType) (string, bool) {
	path, ok := dp[cpType]
	return path, ok
}

// ClientDefaults returns the default config paths for sgip-client.
func ClientDefaults() ConfigPaths {
	paths := make(ConfigPaths)
	if wd, err := os.Getwd(); err == nil {
		paths[WorkingDirLoc] = filepath.Join(wd, "sgip-client-config.json")
	}
	if home, err := HomeDir(); err == nil {
		paths[HomeLoc] = filepath.Join(home, ".sgip", "sgip-client-config.json")
	}
	paths[LocalLoc] = "/usr/local/sgip/sgip-client-config.json"
	return paths
}

// FindConfigPath is used by a service to find a config file path in the following order:
// - From CLI argument.
// - From ENV.
// - From a list of default paths.
// If argsIndex < 0, searching from CLI arguments does not take place.
func FindConfigPath(args []string, argsIndex int, env string, defaults ConfigPaths) (string, error) {
	if argsIndex >= 0 && len(args) > argsIndex {
		path := args[argsIndex]
		log.Infof("using args[%d] as config path: %s", argsIndex, path)
		return path, nil
	}
	if env != "" {
		if path, ok := os.LookupEnv(env); ok {
			log.Infof("using $%s as config path: %s", env, path)
			return path, nil
		}
	}
	log.Debugf("config path is not explicitly specified, trying default paths...")
	for i, cpType := range AllConfigLocationTypes() {
		path, ok := defaults[cpType]
		if !ok {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			log.Debugf("- [%d/%d] '%s' cannot be accessed: %s", i+1, len(defaults), path, err.Error())
		} else {
			log.Debugf("- [%d/%d] '%s' is found", i+1, len(defaults), path)
			log.Infof("using fallback config path: %s", path)
			return path, nil
		}
	}
	return "", errors.Wrapf(ErrConfigNotFound, "tried %s", defaults)
}

// WriteConfig is used by config file generators. The file is written as
// YAML when output ends in .yaml or .yml, as indented JSON otherwise.
// An existing file is only replaced when replace is true.
func WriteConfig(conf interface{}, output string, replace bool) error {
	var raw []byte
	var err error
	switch filepath.Ext(output) {
	case ".yaml", ".yml":
		raw, err = yaml.Marshal(conf)
	default:
		raw, err = json.MarshalIndent(conf, "", "\t")
	}
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if _, err := os.Stat(output); !replace && err == nil {
		return errors.Errorf("file %s already exists, stopping as 'replace,r' flag is not set", output)
	}
	if err := os.MkdirAll(filepath.Dir(output), 0750); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	if err := ioutil.WriteFile(output, raw, 0600); err != nil {
		return errors.Wrap(err, "failed to write file")
	}
	log.Infof("Wrote %d bytes to %s", len(raw), output)
	return nil
}
