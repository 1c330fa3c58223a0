package transport

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse parses Transport header values. A single value may carry several
// comma separated transport specs.
func Parse(values []string) (Header, error) {
	var opts []Option
	for _, value := range values {
		for _, spec := range strings.Split(value, ",") {
			spec = strings.TrimSpace(spec)
			if spec == "" {
				continue
			}
			o, err := parseOption(spec)
			if err != nil {
				return nil, err
			}
			opts = append(opts, o)
		}
	}
	if len(opts) == 0 {
		return nil, errors.New("malformed transport header")
	}

	return &header{options: opts}, nil
}

func parseOption(in string) (Option, error) {
	parts := strings.Split(in, ";")
	opt := &option{profile: Profile(strings.ToUpper(parts[0]))}
	if _, err := opt.profile.Protocol(); err != nil {
		return nil, err
	}

	for _, part := range parts[1:] {
		key, value, hasValue := strings.Cut(strings.TrimSpace(part), "=")
		switch key {
		case "unicast":
			opt.delivery = DeliveryUnicast
		case "multicast":
			opt.delivery = DeliveryMulticast
		case "destination":
			opt.params = append(opt.params, Destination(value))
		case "source":
			opt.params = append(opt.params, Source(value))
		case "append":
			opt.params = append(opt.params, Append(""))
		case "interleaved":
			channels, err := parseRange(key, value, hasValue)
			if err != nil {
				return nil, err
			}
			opt.params = append(opt.params, Interleaved(channels))
		case "ttl":
			seconds, err := parseInt(key, value, hasValue)
			if err != nil {
				return nil, err
			}
			opt.params = append(opt.params, TTL(time.Second*time.Duration(seconds)))
		case "layers":
			layers, err := parseInt(key, value, hasValue)
			if err != nil {
				return nil, err
			}
			opt.params = append(opt.params, Layers(layers))
		case "port":
			ports, err := parseRange(key, value, hasValue)
			if err != nil {
				return nil, err
			}
			opt.params = append(opt.params, Port(ports))
		case "client_port":
			ports, err := parseRange(key, value, hasValue)
			if err != nil {
				return nil, err
			}
			opt.params = append(opt.params, ClientPort(ports))
		case "server_port":
			ports, err := parseRange(key, value, hasValue)
			if err != nil {
				return nil, err
			}
			opt.params = append(opt.params, ServerPort(ports))
		case "ssrc":
			if !hasValue {
				return nil, errors.New("malformed parameter ssrc expected identifier")
			}
			ssrc, err := strconv.ParseUint(value, 16, 32)
			if err != nil {
				return nil, fmt.Errorf("failed to parse ssrc value: %w", err)
			}
			opt.params = append(opt.params, SSRC(ssrc))
		case "mode":
			if !hasValue {
				return nil, errors.New("malformed parameter mode")
			}
			opt.params = append(opt.params, Mode(strings.Trim(value, `"`)))
		default:
			// Unknown parameters are ignored so vendor extensions do not
			// fail an otherwise valid reply.
			continue
		}
	}
	return opt, nil
}

func parseRange(key, value string, hasValue bool) ([]int, error) {
	if !hasValue {
		return nil, fmt.Errorf("malformed parameter %s expected at least one value", key)
	}
	var out []int
	for _, v := range strings.Split(value, "-") {
		i, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s, received %s: %w", key, v, err)
		}
		out = append(out, i)
	}
	if len(out) > 2 {
		return nil, fmt.Errorf("malformed parameter %s, received %s", key, value)
	}
	return out, nil
}

func parseInt(key, value string, hasValue bool) (int, error) {
	if !hasValue {
		return 0, fmt.Errorf("malformed parameter %s expected a value", key)
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s value: %w", key, err)
	}
	return i, nil
}

// ServerPorts returns the server_port parameter of o, if any.
func ServerPorts(o Option) (ServerPort, bool) {
	for _, p := range o.Parameters() {
		if sp, ok := p.(ServerPort); ok {
			return sp, true
		}
	}
	return nil, false
}

// SSRCOf returns the ssrc parameter of o, if any.
func SSRCOf(o Option) (SSRC, bool) {
	for _, p := range o.Parameters() {
		if s, ok := p.(SSRC); ok {
			return s, true
		}
	}
	return 0, false
}
